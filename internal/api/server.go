package api

import (
	"encoding/hex"
	"fmt"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	v1 "github.com/attendly/attendly/internal/api/handler/v1"
	"github.com/attendly/attendly/internal/api/middleware"
	"github.com/attendly/attendly/internal/config"
	"github.com/attendly/attendly/internal/facematch"
	"github.com/attendly/attendly/internal/pkg/token"
	"github.com/attendly/attendly/internal/repository"
	"github.com/attendly/attendly/internal/repository/dao"
	"github.com/attendly/attendly/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	codec *token.Codec
}

func NewServer(conf *config.AppConfig, db *gorm.DB, events service.EventPublisher, redisClient *redis.Client, capacitySvc *service.CapacityService) (*Server, error) {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	sealingKey, err := hex.DecodeString(conf.Token.SealingKey)
	if err != nil {
		return nil, fmt.Errorf("token sealing key is not valid hex -> %w", err)
	}
	codec, err := token.NewCodec(sealingKey)
	if err != nil {
		return nil, fmt.Errorf("token.NewCodec -> %w", err)
	}

	s := &Server{
		Config: conf,
		Router: engine,
		codec:  codec,
	}

	s.MountMiddlewares()

	allocator := service.NewCodeAllocator(events)

	authHandler := s.initAuthHandler(db)
	eventHandler := s.initEventHandler(db)
	registrationHandler := s.initRegistrationHandler(db, allocator)
	ticketingHandler := s.initTicketingHandler(db, capacitySvc, allocator)
	checkinHandler := s.initCheckinHandler(db, events)
	s.MountHandlers(redisClient, authHandler, eventHandler, registrationHandler, ticketingHandler, checkinHandler)

	return s, nil
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	operatorDAO := dao.NewOperatorDAO(db)
	repo := repository.NewOperatorRepository(operatorDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initEventHandler(db *gorm.DB) *v1.EventHandler {
	eventDAO := dao.NewEventDAO(db)
	repo := repository.NewEventRepository(eventDAO)
	svc := service.NewEventService(repo)
	handler := v1.NewEventHandler(svc)

	return handler
}

func (s *Server) initRegistrationHandler(db *gorm.DB, allocator *service.CodeAllocator) *v1.RegistrationHandler {
	registrationDAO := dao.NewRegistrationDAO(db)
	repo := repository.NewRegistrationRepository(registrationDAO)
	eventsRepo := repository.NewEventRepository(dao.NewEventDAO(db))
	svc := service.NewRegistrationService(repo, eventsRepo, s.codec, allocator)
	handler := v1.NewRegistrationHandler(svc)

	return handler
}

func (s *Server) initTicketingHandler(db *gorm.DB, capacitySvc *service.CapacityService, allocator *service.CodeAllocator) *v1.TicketingHandler {
	ticketDAO := dao.NewTicketDAO(db)
	repo := repository.NewTicketRepository(ticketDAO)
	eventsRepo := repository.NewEventRepository(dao.NewEventDAO(db))
	svc := service.NewTicketingService(repo, eventsRepo, capacitySvc, s.codec, allocator)
	handler := v1.NewTicketingHandler(s.Config.Stripe, svc)

	return handler
}

func (s *Server) initCheckinHandler(db *gorm.DB, events service.EventPublisher) *v1.CheckinHandler {
	eventsRepo := repository.NewEventRepository(dao.NewEventDAO(db))
	registrations := repository.NewRegistrationRepository(dao.NewRegistrationDAO(db))
	tickets := repository.NewTicketRepository(dao.NewTicketDAO(db))
	attendance := repository.NewAttendanceRepository(dao.NewAttendanceDAO(db))
	matcher := facematch.NewClient(s.Config.FaceMatch)
	svc := service.NewCheckinService(
		eventsRepo,
		registrations,
		tickets,
		attendance,
		s.codec,
		matcher,
		events,
		s.Config.FaceMatch.ConfidenceThreshold,
	)
	handler := v1.NewCheckinHandler(svc)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(
	redisClient *redis.Client,
	authHandler *v1.AuthHandler,
	eventHandler *v1.EventHandler,
	registrationHandler *v1.RegistrationHandler,
	ticketingHandler *v1.TicketingHandler,
	checkinHandler *v1.CheckinHandler,
) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	// Stripe signs the webhook itself; it carries no operator JWT.
	s.Router.POST(basePath+"/payments/webhook", ticketingHandler.HandlePaymentWebhook)

	verifyJWT := middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT()

	events := s.Router.Group(basePath, verifyJWT)
	{
		events.POST("/events", eventHandler.HandleCreateEvent)
		events.GET("/events", eventHandler.HandleListEvents)
		events.GET("/events/:eventID", eventHandler.HandleGetEvent)
		events.DELETE("/events/:eventID", eventHandler.HandleCancelEvent)

		events.POST("/events/:eventID/registrations", registrationHandler.HandleRegister)
		events.GET("/events/:eventID/registrations", registrationHandler.HandleListRegistrations)
		events.POST("/events/:eventID/registrations/codes/backfill", registrationHandler.HandleBackfillCodes)
		events.GET("/registrations/:registrationID", registrationHandler.HandleGetRegistration)
		events.DELETE("/registrations/:registrationID", registrationHandler.HandleCancelRegistration)

		events.POST("/events/:eventID/tickets/purchase", ticketingHandler.HandlePurchase)
		events.POST("/events/:eventID/tickets/codes/backfill", ticketingHandler.HandleBackfillCodes)
		events.GET("/tickets/:ticketID", ticketingHandler.HandleGetTicket)

		events.GET("/events/:eventID/attendance", checkinHandler.HandleListAttendance)
	}

	checkin := s.Router.Group(basePath, verifyJWT)
	if s.Config.RateLimit != nil && s.Config.RateLimit.Enabled {
		checkin.Use(middleware.RateLimit(redisClient, s.Config.RateLimit.Limit, s.Config.RateLimit.Window))
	}
	{
		checkin.POST("/events/:eventID/checkin/token", checkinHandler.HandleValidateToken)
		checkin.POST("/events/:eventID/checkin/code", checkinHandler.HandleValidateCode)
		checkin.POST("/events/:eventID/checkin/face", checkinHandler.HandleValidateFace)
		checkin.POST("/events/:eventID/checkin/roster", checkinHandler.HandleRosterCheck)
	}

	s.Router.GET("/", v1.HandleHealthcheck)
}
