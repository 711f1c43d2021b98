package main

import (
	"log"
	"os"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/qa"
	"github.com/zuberi/fizikia/core/schedmail"
	emailsvc "github.com/zuberi/fizikia/services/email"
	logsvc "github.com/zuberi/fizikia/services/logger"
	"github.com/zuberi/fizikia/storage/database"
	sqlxrepos "github.com/zuberi/fizikia/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// one-shot commands run through the same services the API uses
	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, svcLogger)
	}

	// start CLI
	cli := commandLine{
		db:           db,
		usrRepo:      sqlxrepos.NewUserRepository(db),
		schedmailSvc: schedmail.NewService(sqlxrepos.NewScheduledEmailRepository(db), mailSvc, conf),
		qaSvc:        qa.NewService(sqlxrepos.NewQARepository(db)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
