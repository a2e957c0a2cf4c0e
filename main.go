// Package main scholarship portal API.
//
// @title           ScholarHub API
// @version         1.0
// @description     Scholarship application portal (applications, workflow, commissions, wallets).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"
	"scholarhub/app/echoServer"
	adminctrl "scholarhub/app/echoServer/controller/admin"
	agentctrl "scholarhub/app/echoServer/controller/agent"
	appctrl "scholarhub/app/echoServer/controller/application"
	authctrl "scholarhub/app/echoServer/controller/auth"
	hqctrl "scholarhub/app/echoServer/controller/hq"
	notifctrl "scholarhub/app/echoServer/controller/notification"
	officectrl "scholarhub/app/echoServer/controller/office"
	scholctrl "scholarhub/app/echoServer/controller/scholarship"
	walletctrl "scholarhub/app/echoServer/controller/wallet"
	"scholarhub/app/echoServer/validation"
	"scholarhub/config"
	apprepo "scholarhub/repository/application"
	mailerrepo "scholarhub/repository/mailer"
	notifrepo "scholarhub/repository/notification"
	paymentrepo "scholarhub/repository/payment"
	scholarshiprepo "scholarhub/repository/scholarship"
	userrepo "scholarhub/repository/user"
	walletrepo "scholarhub/repository/wallet"
	agentsvc "scholarhub/service/agent"
	authsvc "scholarhub/service/auth"
	"scholarhub/service/commission"
	hqsvc "scholarhub/service/hq"
	"scholarhub/service/ledger"
	"scholarhub/service/notify"
	officesvc "scholarhub/service/office"
	scholarshipsvc "scholarhub/service/scholarship"
	"scholarhub/service/workflow"
	"scholarhub/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	minWithdrawal, err := decimal.NewFromString(cfg.MinWithdrawal)
	if err != nil {
		log.Error("invalid MIN_WITHDRAWAL", "value", cfg.MinWithdrawal, "err", err)
		os.Exit(1)
	}

	// repos
	ur := userrepo.New(db)
	sr := scholarshiprepo.New(db)
	ar := apprepo.New(db)
	wr := walletrepo.New(db)
	nr := notifrepo.New(db)
	pr := paymentrepo.New(db)

	var mailer mailerrepo.Mailer
	if cfg.SMTPHost != "" {
		mailer = mailerrepo.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		mailer = mailerrepo.NewNoop()
	}

	// services
	engine := workflow.New(db, ar)
	ledgerSvc := ledger.New(db, wr, minWithdrawal)
	commissions := commission.New(ledgerSvc)
	notifier := notify.New(nr, ur, mailer, log)
	authSvc := authsvc.New(ur, cfg.JWTSecret)
	scholSvc := scholarshipsvc.New(sr)
	officeSvc := officesvc.New(db, engine, ar, ur, sr, pr, notifier, log)
	agentSvc := agentsvc.New(db, engine, ar, ur, sr, commissions, notifier, log)
	hqSvc := hqsvc.New(db, engine, ar, notifier, log)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: authSvc, V: v, Log: log}
	scholC := &scholctrl.Controller{Svc: scholSvc, V: v, Log: log}
	appC := &appctrl.Controller{Office: officeSvc, Engine: engine, V: v, Log: log}
	officeC := &officectrl.Controller{Svc: officeSvc, V: v, Log: log}
	agentC := &agentctrl.Controller{Svc: agentSvc, V: v, Log: log}
	hqC := &hqctrl.Controller{Svc: hqSvc, V: v, Log: log}
	walletC := &walletctrl.Controller{Svc: ledgerSvc, V: v, Log: log}
	adminC := &adminctrl.Controller{Svc: ledgerSvc, V: v, Log: log}
	notifC := &notifctrl.Controller{Svc: notifier, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:         authC,
		Scholarship:  scholC,
		Application:  appC,
		Office:       officeC,
		Agent:        agentC,
		HQ:           hqC,
		Wallet:       walletC,
		Admin:        adminC,
		Notification: notifC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	slog.Info("starting server", "env", cfg.Env, "chosen_port", port)

	e.Logger.Fatal(e.Start(":" + port))
}
