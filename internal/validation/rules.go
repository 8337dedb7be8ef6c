package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Required rejects empty values.
func Required(label string) Rule {
	return func(value string) string {
		if value == "" {
			return fmt.Sprintf("Enter a %s", label)
		}
		return ""
	}
}

// MaxLen rejects values longer than n characters. Empty values pass so the
// rule composes with optional columns.
func MaxLen(label string, n int) Rule {
	return func(value string) string {
		if len([]rune(value)) > n {
			return fmt.Sprintf("The %s must be %d characters or less", label, n)
		}
		return ""
	}
}

// Pattern rejects non-empty values that do not match re.
func Pattern(re *regexp.Regexp, reason string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		if !re.MatchString(value) {
			return reason
		}
		return ""
	}
}

// OneOf rejects non-empty values outside the allowed set.
func OneOf(label string, allowed ...string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		for _, a := range allowed {
			if value == a {
				return ""
			}
		}
		return fmt.Sprintf("The %s must be one of %s", label, strings.Join(allowed, ", "))
	}
}

// PositiveNumber rejects non-empty values that are not numbers greater than zero.
func PositiveNumber(label string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Sprintf("The %s must be a number", label)
		}
		if n <= 0 {
			return fmt.Sprintf("The %s must be greater than 0", label)
		}
		return ""
	}
}

func parseQuantityValue(value string) (float64, bool) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DateDMY rejects non-empty values that are not valid dd/mm/yyyy dates.
func DateDMY(label string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		if _, err := time.Parse("02/01/2006", value); err != nil {
			return fmt.Sprintf("Enter the %s in the format dd/mm/yyyy", label)
		}
		return ""
	}
}
