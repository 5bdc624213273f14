package utils

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gorm.io/gorm"

	"lms/config"
	"lms/events"
	"lms/models"
)

// SendEmail delivers a single HTML email through SendGrid.
func SendEmail(toEmail, toName, subject, htmlBody string) error {
	if config.AppConfig.SendgridKey == "" {
		log.Printf("[EMAIL] SendGrid key not configured, skipping email to %s", toEmail)
		return nil
	}

	from := mail.NewEmail("Learnsphere", config.AppConfig.EmailSender)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	client := sendgrid.NewSendClient(config.AppConfig.SendgridKey)
	resp, err := client.Send(message)
	if err != nil {
		log.Printf("[EMAIL] Error sending email to %s: %v", toEmail, err)
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	log.Printf("[EMAIL] Sent %q to %s", subject, toEmail)
	return nil
}

func getEmailTemplate(title, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; box-shadow: 0 4px 15px rgba(0,0,0,0.05); }
			.header { background-color: #1A2B4C; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #1A2B4C; line-height: 1.6; }
			.content h2 { color: #1A2B4C; margin-top: 0; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; border-top: 1px solid #E0E0E0; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #4C8BF5; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>LEARNSPHERE</h1>
			</div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">
				&copy; 2026 Learnsphere. All rights reserved.
			</div>
		</div>
	</body>
	</html>
	`, title, bodyContent)
}

type notificationPayload struct {
	CourseID     uint    `json:"courseId"`
	StudentID    uint    `json:"studentId"`
	UserID       uint    `json:"userId"`
	InstructorID uint    `json:"instructorId"`
	Title        string  `json:"title"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Reason       string  `json:"reason"`
}

// NotificationSender builds the outbox delivery function. It resolves the
// recipient and course from the event payload and sends the matching email.
func NotificationSender(db *gorm.DB) events.Sender {
	return func(eventType string, payload []byte) error {
		var data notificationPayload
		if err := json.Unmarshal(payload, &data); err != nil {
			return fmt.Errorf("decode %s payload: %w", eventType, err)
		}

		recipientID := data.StudentID
		if recipientID == 0 {
			recipientID = data.UserID
		}
		if eventType == events.CoursePublished {
			recipientID = data.InstructorID
		}
		if recipientID == 0 {
			log.Printf("[EMAIL] No recipient in %s payload, skipping", eventType)
			return nil
		}

		var user models.User
		if err := db.Where("id = ?", recipientID).First(&user).Error; err != nil {
			return fmt.Errorf("load recipient %d: %w", recipientID, err)
		}

		courseTitle := data.Title
		if courseTitle == "" && data.CourseID != 0 {
			var course models.Course
			if err := db.Where("id = ?", data.CourseID).First(&course).Error; err == nil {
				courseTitle = course.Title
			}
		}

		var subject, body string
		switch eventType {
		case events.CoursePublished:
			subject = "Your course is live!"
			body = getEmailTemplate("Course Published",
				fmt.Sprintf(`<p>Hi %s,</p><p>Your course <b>%s</b> is now published and open for enrollment.</p>`, user.Name, courseTitle))
		case events.EnrollmentCreated:
			subject = "You're enrolled!"
			body = getEmailTemplate("Enrollment Confirmed",
				fmt.Sprintf(`<p>Hi %s,</p><p>You are now enrolled in <b>%s</b>. Happy learning!</p>`, user.Name, courseTitle))
		case events.EnrollmentCompleted:
			subject = "Congratulations on completing your course!"
			body = getEmailTemplate("Course Completed",
				fmt.Sprintf(`<p>Hi %s,</p><p>You have completed <b>%s</b>. Leave a review to help other learners.</p>`, user.Name, courseTitle))
		case events.PaymentCompleted:
			subject = "Payment received"
			body = getEmailTemplate("Payment Successful",
				fmt.Sprintf(`<p>Hi %s,</p><div class="info-box">Amount: <b>%.2f %s</b></div><p>Thank you for your purchase.</p>`, user.Name, data.Amount, data.Currency))
		case events.PaymentRefunded:
			subject = "Your refund has been processed"
			body = getEmailTemplate("Refund Processed",
				fmt.Sprintf(`<p>Hi %s,</p><div class="info-box">Refunded: <b>%.2f</b><br>Reason: %s</div>`, user.Name, data.Amount, data.Reason))
		default:
			log.Printf("[EMAIL] No template for %s, skipping", eventType)
			return nil
		}

		return SendEmail(user.Email, user.Name, subject, body)
	}
}
