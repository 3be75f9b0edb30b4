package router

import (
	"context"
	"net/http"
	"strings"

	"lms/internal/api/v1/handler"
	"lms/internal/config"
	"lms/internal/middleware"
	"lms/internal/pubsub"
	"lms/internal/repository"
	"lms/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Open DB connection pool
	dsn := cfg.DBConnectionString
	// In a development environment, we want to ensure that SSL is disabled for
	// local testing. In production, the connection string should be provided
	// with the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Msgf("Failed to open DB connection pool: %v", err)
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Msgf("Failed to ping DB: %v", err)
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Resolve the JWT secret. Outside development the secret lives in
	// Secret Manager rather than the environment.
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" && cfg.Environment != "development" {
		secrets, err := service.NewSecretManagerService(context.Background(), cfg)
		if err != nil {
			logger.Error().Msgf("Failed to create Secret Manager client: %v", err)
			return nil, nil, err
		}
		defer secrets.Close()
		jwtSecret, err = secrets.GetSecret(context.Background(), cfg.JWTSecretName)
		if err != nil {
			logger.Error().Msgf("Failed to resolve JWT secret: %v", err)
			return nil, nil, err
		}
	}

	// 3. Initialize S3 client for certificate PDF downloads
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Error().Msgf("Failed to load S3 config: %v", err)
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Initialize Pub/Sub publisher for notification events
	pubSubPublisher, err := pubsub.NewPublisher(context.Background(), cfg)
	if err != nil {
		logger.Error().Msgf("Failed to create Pub/Sub publisher: %v", err)
		return nil, nil, err
	}

	// 6. Initialize repositories & services & handlers
	courseRepo := repository.NewCourseRepo(pool)
	enrollmentRepo := repository.NewEnrollmentRepo(pool)
	progressRepo := repository.NewLessonProgressRepo(pool)
	certificateRepo := repository.NewCertificateRepo(pool)

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, progressRepo, courseRepo, pubSubPublisher, cfg.NotificationsTopic, logger)
	certificateSvc := service.NewCertificateService(certificateRepo, enrollmentRepo, courseRepo, s3Client, cfg.S3Bucket, cfg.CertificateNumberPrefix, logger)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, validate)
	progressHandler := handler.NewProgressHandler(enrollmentSvc, validate)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, validate)

	// 7. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(jwtSecret)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	enrollmentHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	progressHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	certificateHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Only remove the middleware if it exists, so presigned URL
		// generation stays safe when the stack differs.
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
