package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"lms/config"
	analyticsController "lms/controllers/analytics"
	courseController "lms/controllers/course"
	paymentController "lms/controllers/payment"
	studentController "lms/controllers/student"
	"lms/database"
	"lms/events"
	"lms/routers/analyticsRoutes"
	"lms/routers/authRoutes"
	"lms/routers/courseRoutes"
	"lms/routers/paymentRoutes"
	"lms/routers/studentRoutes"
	"lms/services/analytics"
	"lms/services/catalog"
	"lms/services/enrollment"
	"lms/services/payment"
	"lms/utils"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	db := database.Database.Db

	dispatcher := events.NewDispatcher(db)
	dispatcher.Notify(
		events.CoursePublished,
		events.EnrollmentCreated,
		events.EnrollmentCompleted,
		events.PaymentCompleted,
		events.PaymentRefunded,
	)

	catalogSvc := catalog.New(db, dispatcher)
	catalogSvc.RegisterHandlers(dispatcher)
	enrollmentSvc := enrollment.New(db, dispatcher)
	paymentSvc := payment.New(db, payment.NewHTTPGateway(), enrollmentSvc, dispatcher)
	analyticsSvc := analytics.New(db)

	courseController.Init(catalogSvc)
	studentController.Init(enrollmentSvc)
	paymentController.Init(paymentSvc)
	analyticsController.Init(analyticsSvc)

	utils.InitSchedulers(catalogSvc)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	authRoutes.SetupAuthRoutes(app)
	courseRoutes.SetupCourseRoutes(app)
	studentRoutes.SetupStudentRoutes(app)
	paymentRoutes.SetupPaymentRoutes(app)
	analyticsRoutes.SetupAnalyticsRoutes(app)

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
