// pkg/email/email.go
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type SubscriptionActiveData struct {
	DisplayName string
	PlanName    string
	PeriodEnd   *time.Time
}

type PaymentFailedData struct {
	DisplayName string
	PlanName    string
}

type SubscriptionCancelledData struct {
	DisplayName string
	PlanName    string
	EndsAt      *time.Time
}

type SubscriptionExpiryWarningData struct {
	DisplayName string
	PlanName    string
	DaysLeft    int
	ExpiryDate  time.Time
}

type TrialExpiredData struct {
	DisplayName string
}

func NewEmailService(apiKey string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      "Goodspeech <noreply@goodspeech.chat>",
		templates: templates,
	}, nil
}

func (s *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("Resend API error: Status: %d, Body: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	return nil
}

// Email sending methods
func (s *EmailService) SendSubscriptionActiveEmail(email, displayName, planName string, periodEnd *time.Time) error {
	data := SubscriptionActiveData{
		DisplayName: displayName,
		PlanName:    planName,
		PeriodEnd:   periodEnd,
	}
	return s.sendTemplateEmail(email, "Your Goodspeech subscription is active 🎉", "subscription_active.html", data)
}

func (s *EmailService) SendPaymentFailedEmail(email, displayName, planName string) error {
	data := PaymentFailedData{
		DisplayName: displayName,
		PlanName:    planName,
	}
	return s.sendTemplateEmail(email, "We couldn't process your payment ⚠️", "payment_failed.html", data)
}

func (s *EmailService) SendSubscriptionCancelledEmail(email, displayName, planName string, endsAt *time.Time) error {
	data := SubscriptionCancelledData{
		DisplayName: displayName,
		PlanName:    planName,
		EndsAt:      endsAt,
	}
	return s.sendTemplateEmail(email, "Your subscription has been cancelled", "subscription_cancelled.html", data)
}

func (s *EmailService) SendSubscriptionExpiryWarning(email, displayName, planName string, expiryDate time.Time, daysLeft int) error {
	data := SubscriptionExpiryWarningData{
		DisplayName: displayName,
		PlanName:    planName,
		DaysLeft:    daysLeft,
		ExpiryDate:  expiryDate,
	}
	return s.sendTemplateEmail(
		email,
		fmt.Sprintf("Your subscription expires in %d days ⚠️", daysLeft),
		"subscription_expiry_warning.html",
		data,
	)
}

func (s *EmailService) SendTrialExpiredEmail(email, displayName string) error {
	data := TrialExpiredData{
		DisplayName: displayName,
	}
	return s.sendTemplateEmail(email, "Your Goodspeech trial has ended", "trial_expired.html", data)
}
