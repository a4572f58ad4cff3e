package service

import "strings"

const legacyMobilePrefix = "0270"

// FixPhoneNumber strips feed punctuation and repairs numbers like 02708x1234567 to 08x1234567.
func FixPhoneNumber(number string) string {
	number = strings.NewReplacer("/", "", "-", "", " ", "").Replace(number)
	if strings.HasPrefix(number, legacyMobilePrefix) && len(number) == 13 {
		number = number[3:]
	}
	return number
}

// MobileNormalizer produces the routable form of a mobile number used for comparisons.
type MobileNormalizer struct {
	countryCode string
}

// NewMobileNormalizer builds a normalizer replacing a leading trunk 0 with countryCode.
func NewMobileNormalizer(countryCode string) *MobileNormalizer {
	return &MobileNormalizer{countryCode: strings.TrimPrefix(countryCode, "+")}
}

// Normalize keeps digits only and internationalises local numbers.
func (n *MobileNormalizer) Normalize(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if n != nil && n.countryCode != "" && strings.HasPrefix(digits, "0") {
		digits = n.countryCode + digits[1:]
	}
	return digits
}

func (n *MobileNormalizer) normalizePtr(number *string) *string {
	if number == nil {
		return nil
	}
	v := n.Normalize(*number)
	return &v
}
