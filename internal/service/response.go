package service

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ASHISH26940/heliokv/internal/metrics"
)

const (
	generalSyntax = "Syntax: <operation> <key> OR <operation> <key> <value>. For example: get apple"
	putSyntax     = "Syntax of put: <operation> <key> <value>. For example: put apple 10"
)

// stamp appends the response timestamp, in milliseconds since the epoch.
func (s *Service) stamp(msg string) string {
	return fmt.Sprintf("%s at time %d", msg, s.now().UnixMilli())
}

func (s *Service) malformed() string {
	return s.stamp("Error: Malformed Request. " + generalSyntax)
}

func (s *Service) malformedPut() string {
	return s.stamp("Error: Malformed Request. " + putSyntax)
}

func (s *Service) notNumeric() string {
	return s.stamp("Error: Value should be numeric")
}

func (s *Service) notFound(key string) string {
	return s.stamp(fmt.Sprintf("Error: %s not found", key))
}

func (s *Service) found(key, value string) string {
	return s.stamp(fmt.Sprintf("Value of %s: %s", key, value))
}

func (s *Service) deleted(key string) string {
	return s.stamp(fmt.Sprintf("Delete %s succeed", key))
}

func (s *Service) stored(key, value string) string {
	return s.stamp(fmt.Sprintf("Put [%s, %s] in store succeed", key, value))
}

func (s *Service) failed(err error) string {
	return s.stamp(fmt.Sprintf("Error: request could not be applied: %v", err))
}

// rejection maps a parse or validation error to its response and metrics outcome.
func (s *Service) rejection(err error) (string, string) {
	switch errors.Cause(err) {
	case ErrPutSyntax:
		return s.malformedPut(), metrics.OutcomeMalformed
	case ErrNotNumeric:
		return s.notNumeric(), metrics.OutcomeInvalid
	default:
		return s.malformed(), metrics.OutcomeMalformed
	}
}
