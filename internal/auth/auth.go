// Package auth resolves the Gemini API key.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ErrNoAPIKey is returned when no source holds a key.
var ErrNoAPIKey = errors.New("API key not found. Set GEMINI_API_KEY or SSM_API_KEY_PARAM")

// ParameterGetter is the subset of the SSM client GetAPIKey uses.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. the SSM SecureString named by SSM_API_KEY_PARAM, when params is non-nil
func GetAPIKey(ctx context.Context, params ParameterGetter) (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	paramName := os.Getenv("SSM_API_KEY_PARAM")
	if paramName == "" || params == nil {
		return "", ErrNoAPIKey
	}

	start := time.Now()
	result, err := params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", paramName, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", paramName)
	}
	key := strings.TrimSpace(*result.Parameter.Value)
	if key == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("Gemini API key loaded from SSM")
	return key, nil
}
