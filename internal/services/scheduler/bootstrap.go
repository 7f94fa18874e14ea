package scheduler

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
	"github.com/NordCoder/GetMoreSeo/internal/services/generator"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler/repo"
)

// NewFromConfig wires a sweep use case against Postgres with the blog
// generator as its job runner. Every caller (daemon, gateway, CLI) builds
// the sweep the same way.
func NewFromConfig(cfg *config.Config, db *pg.DB, log *zap.Logger) (*Usecase, error) {
	opts, err := OptionsFromConfig(&cfg.Sched)
	if err != nil {
		return nil, err
	}
	gen, err := generator.NewFromConfig(cfg, pg.NewBlogRepo(db), log)
	if err != nil {
		return nil, err
	}

	uc := NewUC(pg.NewScheduleRepo(db), gen, pg.NewTransactor(db, log), opts, log)
	uc.Logs = pg.NewScheduleLogRepo(db)
	if cfg.Sched.Credits {
		uc.Credits = pg.NewCreditRepo(db)
	}
	if cfg.Kafka.Enable {
		uc.Events = repo.Outbox{R: pg.NewOutboxRepo(db)}
	}
	return uc, nil
}
