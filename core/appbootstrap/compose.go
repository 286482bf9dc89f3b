package appbootstrap

import (
	"cityfix/api"
	"cityfix/config"
	"cityfix/core/accounts"
	"cityfix/core/assignment"
	"cityfix/core/auth"
	"cityfix/core/messaging"
	"cityfix/core/metrics"
	"cityfix/core/notes"
	"cityfix/core/rbac"
	"cityfix/core/reports"
	"cityfix/core/store"
	"cityfix/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	accounts   *accounts.Service
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	companies := store.NewCompaniesStore(db)
	audits := store.NewAuditStore(db)
	reportsStore := store.NewReportsStore(db)
	messagesStore := store.NewMessagesStore(db)
	notesStore := store.NewNotesStore(db)

	policy, err := rbac.NewDefaultPolicy()
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	resolver := assignment.NewResolver(users, companies)
	engine := reports.NewService(cfg, reportsStore, resolver, audits, m, logger)
	accountsSvc := accounts.NewService(cfg, users, companies, sessionManager, audits, logger)

	var workers []api.BackgroundWorker
	if cfg.Scheduler.Enabled {
		workers = append(workers, auth.NewSessionJanitor(sessions, cfg.Scheduler.SessionPurgeSpec, logger))
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:     users,
			Sessions:  sessionManager,
			Policy:    policy,
			Metrics:   m,
			Accounts:  accountsSvc,
			Reports:   engine,
			Messaging: messaging.NewService(cfg, engine, messagesStore, m, logger),
			Notes:     notes.NewService(cfg, engine, notesStore, m, logger),
			DBStats:   db.Stats,
		},
		accounts: accountsSvc,
		workers:  workers,
	}, nil
}
