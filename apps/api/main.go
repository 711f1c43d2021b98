package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/zuberi/fizikia/apps/api/echo"
	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/qa"
	"github.com/zuberi/fizikia/core/schedmail"
	"github.com/zuberi/fizikia/core/simulation"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
	dispatchsvc "github.com/zuberi/fizikia/services/dispatch"
	emailsvc "github.com/zuberi/fizikia/services/email"
	logsvc "github.com/zuberi/fizikia/services/logger"
	"github.com/zuberi/fizikia/storage/database"
	sqlxrepos "github.com/zuberi/fizikia/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	asgSvc := assignment.NewService(db, sqlxrepos.NewAssignmentRepository(db))
	subSvc := submission.NewService(db, sqlxrepos.NewSubmissionRepository(db), asgSvc, usrSvc, mailSvc, conf)
	appealSvc := appeal.NewService(sqlxrepos.NewAppealRepository(db), subSvc, asgSvc, usrSvc, mailSvc, conf)
	schedmailSvc := schedmail.NewService(sqlxrepos.NewScheduledEmailRepository(db), mailSvc, conf)
	qaSvc := qa.NewService(sqlxrepos.NewQARepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	schedmail.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	simulation.MaxFrames = conf.Simulation.MaxFrames

	// =========================================================================
	// Start Email Dispatcher

	dispatcher := dispatchsvc.NewWorker(schedmailSvc, logger, conf)
	go dispatcher.Start()
	defer dispatcher.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := echoapi.NewServer(
		conf.Server.Addr,
		shutdown,
		&echoapi.Deps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			UserSvc:       usrSvc,
			AssignmentSvc: asgSvc,
			SubmissionSvc: subSvc,
			AppealSvc:     appealSvc,
			SchedmailSvc:  schedmailSvc,
			QASvc:         qaSvc,
			SimRegistry:   simulation.DefaultRegistry(),
		},
	)

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (database.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return database.DB{}, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return database.DB{}, err
	}

	if err = database.Migrate(db); err != nil {
		return database.DB{}, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
