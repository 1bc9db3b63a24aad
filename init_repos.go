package main

import (
	"database/sql"

	"github.com/hatchlab/hatchdesk/repository"
)

// Repositories holds every repository instance.
type Repositories struct {
	User         repository.UserRepository
	Session      repository.SessionRepository
	Conversation repository.ConversationRepository
	Message      repository.MessageRepository
	ReadState    repository.ReadStateRepository
}

// initRepositories creates the repositories. They share one *sql.DB pool.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User:         repository.NewSQLiteUserRepo(conn),
		Session:      repository.NewSQLiteSessionRepo(conn),
		Conversation: repository.NewSQLiteConversationRepo(conn),
		Message:      repository.NewSQLiteMessageRepo(conn),
		ReadState:    repository.NewSQLiteReadStateRepo(conn),
	}
}
