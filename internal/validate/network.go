// Package validate provides input and configuration validation for trail,
// built on go-playground/validator.
//
// VALIDATION COVERAGE:
//   - Network: bind addresses, ports and join address lists for the gossip
//     layer and the API server
//   - Identifiers: member addresses, content hashes and gossip node names
//   - Structs: request bodies and config structs carrying validate tags
//
// Field names in struct validation errors use the json tag, so messages
// match what API clients sent.
package validate

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	hash32Regex = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// hash32 is a 0x-prefixed 32 byte hex digest, the form of every content
	// and batch hash.
	_ = validate.RegisterValidation("hash32", func(fl validator.FieldLevel) bool {
		return hash32Regex.MatchString(fl.Field().String())
	})
}

// NetworkAddress is a validated "host:port" endpoint.
type NetworkAddress struct {
	Host string `validate:"required,ip"`
	Port int    `validate:"min=0,max=65535"`
}

// String returns the address in "host:port" form.
func (na NetworkAddress) String() string {
	return net.JoinHostPort(na.Host, strconv.Itoa(na.Port))
}

// ParseBindAddress parses and validates a "host:port" string. The host must
// be an IP literal.
func ParseBindAddress(addr string) (*NetworkAddress, error) {
	if addr == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address format '%s': %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port '%s': %w", portStr, err)
	}

	netAddr := &NetworkAddress{Host: host, Port: port}
	if err := validate.Struct(netAddr); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return netAddr, nil
}

// ValidateField validates a single value against a tag expression, for
// example ValidateField("10.0.0.1", "required,ip").
func ValidateField(value any, tag string) error {
	return validate.Var(value, tag)
}

// ValidateAddressList validates the gossip join addresses.
func ValidateAddressList(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("address list cannot be empty")
	}

	for i, addr := range addresses {
		if _, err := ParseBindAddress(addr); err != nil {
			return fmt.Errorf("invalid address at index %d: %w", i, err)
		}
	}
	return nil
}

// ValidateStruct validates s against its validate tags and flattens the
// result into one readable error.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "eth_addr":
		return fmt.Sprintf("%s must be a 0x-prefixed 20 byte address", field)
	case "hash32":
		return fmt.Sprintf("%s must be a 0x-prefixed 32 byte hex hash", field)
	case "min", "gte", "gt":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte", "lt":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
