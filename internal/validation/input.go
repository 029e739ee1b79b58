package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinNameLength               = 2
	MaxNameLength               = 100
	MinDisputeDescriptionLength = 20
	MaxDisputeDescriptionLength = 5000
	MinRejectionReasonLength    = 10
	MaxRejectionReasonLength    = 2000
	MinMessageLength            = 1
	MaxMessageLength            = 5000
	MaxCompanyNameLength        = 200
	MaxTaxIDLength              = 32
	MaxDocumentsCount           = 10
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	localRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateName проверяет имя пользователя.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("имя обязательно")
	}
	return ValidateLength("имя", name, MinNameLength, MaxNameLength)
}

// ValidateDisputeDescription проверяет описание спора.
func ValidateDisputeDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("описание спора обязательно")
	}
	return ValidateLength("описание спора", description, MinDisputeDescriptionLength, MaxDisputeDescriptionLength)
}

// ValidateRejectionReason проверяет причину отклонения заявки продавца.
func ValidateRejectionReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("причина отклонения обязательна")
	}
	return ValidateLength("причина отклонения", reason, MinRejectionReasonLength, MaxRejectionReasonLength)
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}
	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}

// ValidateCompanyName проверяет название компании в заявке продавца.
func ValidateCompanyName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("название компании обязательно")
	}
	return ValidateLength("название компании", name, 1, MaxCompanyNameLength)
}

// ValidateTaxID проверяет идентификатор налогоплательщика.
func ValidateTaxID(taxID string) error {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return fmt.Errorf("ИНН обязателен")
	}
	if utf8.RuneCountInString(taxID) > MaxTaxIDLength {
		return fmt.Errorf("ИНН должен быть не более %d символов", MaxTaxIDLength)
	}
	digitsRegex := regexp.MustCompile(`^[0-9]+$`)
	if !digitsRegex.MatchString(taxID) {
		return fmt.Errorf("ИНН может содержать только цифры")
	}
	return nil
}
