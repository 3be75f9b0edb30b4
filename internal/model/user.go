package model

// Roles carried in the auth token. Identity itself is resolved by an external
// collaborator; this service only consumes {id, role}.
const (
	RoleLearner = "learner"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)
