package echoServer

import (
	"scholarhub/app/echoServer/controller/admin"
	"scholarhub/app/echoServer/controller/agent"
	"scholarhub/app/echoServer/controller/application"
	"scholarhub/app/echoServer/controller/auth"
	"scholarhub/app/echoServer/controller/hq"
	"scholarhub/app/echoServer/controller/notification"
	"scholarhub/app/echoServer/controller/office"
	"scholarhub/app/echoServer/controller/scholarship"
	"scholarhub/app/echoServer/controller/wallet"

	"scholarhub/model"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth         *auth.Controller
	Scholarship  *scholarship.Controller
	Application  *application.Controller
	Office       *office.Controller
	Agent        *agent.Controller
	HQ           *hq.Controller
	Wallet       *wallet.Controller
	Admin        *admin.Controller
	Notification *notification.Controller
	JWTSecret    string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)
	pub.GET("/scholarships", c.Scholarship.List)
	pub.GET("/scholarships/:id", c.Scholarship.Detail)

	// Authenticated
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	authed.Use(ExtractClaims())

	// Applications (shared reads; creation by students and office workers)
	authed.GET("/applications/mine", c.Application.Mine)
	authed.GET("/applications/:id", c.Application.Detail)
	authed.GET("/applications/:id/history", c.Application.History)
	authed.POST("/applications", c.Application.Create,
		RequireRole(model.RoleStudent, model.RoleOffice))
	authed.POST("/applications/:id/submit", c.Application.Submit,
		RequireRole(model.RoleStudent, model.RoleOffice))

	// Scholarship management
	authed.POST("/scholarships", c.Scholarship.Create, RequireRole(model.RoleAdmin))

	// Office intake steps
	og := authed.Group("/office", RequireRole(model.RoleOffice))
	og.POST("/applications/:id/start-review", c.Office.StartReview)
	og.POST("/applications/:id/verify-documents", c.Office.VerifyDocuments)
	og.POST("/applications/:id/verify-payment", c.Office.VerifyPayment)
	og.POST("/applications/:id/forward", c.Office.Forward)
	og.GET("/applications/:id/payments", c.Office.Payments)
	og.POST("/applications/:id/payments", c.Office.RecordPayment)
	og.POST("/payments/:id/approve", c.Office.ApprovePayment)
	og.POST("/payments/:id/reject", c.Office.RejectPayment)

	// Agent review
	ag := authed.Group("/agent", RequireRole(model.RoleAgent))
	ag.POST("/applications/:id/approve", c.Agent.Approve)
	ag.POST("/applications/:id/reject", c.Agent.Reject)
	ag.POST("/applications/:id/letter/approve", c.Agent.ApproveLetter)
	ag.POST("/applications/:id/letter/revision", c.Agent.RequestLetterRevision)
	ag.POST("/applications/:id/jw02/approve", c.Agent.ApproveJW02)
	ag.POST("/applications/:id/jw02/revision", c.Agent.RequestJW02Revision)

	// Headquarters processing
	hg := authed.Group("/hq", RequireRole(model.RoleHQ))
	hg.POST("/applications/:id/applied", c.HQ.MarkApplied)
	hg.POST("/applications/:id/letter", c.HQ.UploadLetter)
	hg.POST("/applications/:id/jw02", c.HQ.UploadJW02)

	// Wallet (agents and HQ earn commissions)
	wg := authed.Group("/wallet", RequireRole(model.RoleAgent, model.RoleHQ))
	wg.GET("", c.Wallet.Get)
	wg.GET("/transactions", c.Wallet.Transactions)
	wg.GET("/withdrawals", c.Wallet.Withdrawals)
	wg.POST("/withdrawals", c.Wallet.RequestWithdrawal)

	// Admin withdrawal review
	adm := authed.Group("/admin", RequireRole(model.RoleAdmin))
	adm.GET("/withdrawals", c.Admin.PendingWithdrawals)
	adm.POST("/withdrawals/:id/approve", c.Admin.Approve)
	adm.POST("/withdrawals/:id/reject", c.Admin.Reject)

	// Notifications
	authed.GET("/notifications", c.Notification.List)
	authed.POST("/notifications/:id/read", c.Notification.MarkRead)
	authed.POST("/notifications/read-all", c.Notification.MarkAllRead)
}
