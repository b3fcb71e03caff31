package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// minPhoneDigits is a sanity bound; real numbers with country code are longer.
const minPhoneDigits = 10

var ErrSignupNotSupported = errors.New("signup not supported")

func (r *Reader) authFlow() auth.Flow {
	return auth.NewFlow(r, auth.SendCodeOptions{})
}

// Code prompts for the login code Telegram sent to the account.
func (r *Reader) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	code, err := prompt("Enter code: ")
	if err != nil {
		return "", fmt.Errorf("read auth code: %w", err)
	}

	return code, nil
}

func (r *Reader) Phone(_ context.Context) (string, error) {
	phone := r.cfg.Phone

	if phone == "" {
		var err error

		phone, err = prompt("Enter phone: ")
		if err != nil {
			return "", fmt.Errorf("read phone number: %w", err)
		}
	}

	phone = sanitizePhone(phone)
	r.logger.Info().Str("phone", maskPhone(phone)).Msg("Using phone number")

	if len(phone) < minPhoneDigits {
		r.logger.Warn().Int("length", len(phone)).Msg("Phone number seems too short, include the country code (e.g. +380...)")
	}

	return phone, nil
}

func (r *Reader) Password(_ context.Context) (string, error) {
	if r.cfg.Password != "" {
		return r.cfg.Password, nil
	}

	password, err := prompt("Enter 2FA password: ")
	if err != nil {
		return "", fmt.Errorf("read 2FA password: %w", err)
	}

	return password, nil
}

func (r *Reader) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (r *Reader) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignupNotSupported
}

func prompt(label string) (string, error) {
	fmt.Print(label)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func sanitizePhone(phone string) string {
	var sb strings.Builder

	phone = strings.TrimSpace(phone)

	if strings.HasPrefix(phone, "+") {
		sb.WriteByte('+')

		phone = phone[1:]
	}

	for _, char := range phone {
		if char >= '0' && char <= '9' {
			sb.WriteRune(char)
		}
	}

	return sb.String()
}

func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "****"
	}

	return phone[:3] + "****" + phone[len(phone)-2:]
}
