// Package services содержит сервис отправки писем-подтверждений о покупке.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	smtplib "github.com/PromaticSolutions/FluencyAi/internal/lib/smtp"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
)

// SenderService отправляет письма о покупках по событиям из очереди.
type SenderService struct {
	transport smtplib.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtplib.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendPurchaseConfirmation отправляет подтверждение покупки плана.
// body — сериализованное событие models.PurchaseEvent из очереди.
func (s *SenderService) SendPurchaseConfirmation(body []byte) error {
	var event models.PurchaseEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal purchase event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if event.Email == "" {
		s.log.Warn("purchase event without email, skipping", slog.String("username", event.Username))
		return nil
	}

	to := []string{event.Email}
	subject := "Confirmação de compra - FluencyAI"
	creditsLine := "mensagens ilimitadas"
	if event.Credits > 0 {
		creditsLine = fmt.Sprintf("%d créditos", event.Credits)
	}
	bodyText := fmt.Sprintf(`Olá, %s!

Sua compra do %s foi confirmada com sucesso.
Seu saldo atual: %s.

Bons estudos!
Equipe FluencyAI`,
		event.Username, event.PlanName, creditsLine)

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
