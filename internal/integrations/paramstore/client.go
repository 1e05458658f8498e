// Package paramstore reads bot secrets from AWS Systems Manager Parameter
// Store. Secrets are SecureString parameters holding small JSON documents,
// for example <prefix>/telegram-bot = {"token":"…","secret_token":"…"}.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"telegram-bot-core/internal/domain"
)

// parameterAPI is the part of *ssm.Client the Client calls.
type parameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter returns the decrypted value of a named parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client resolves secrets through SSM.
type Client struct {
	api parameterAPI
}

func New(api parameterAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameter returns the decrypted value of name. A missing or empty
// parameter is a configuration error; any other SSM failure is an I/O error.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	const op = "paramstore: GetParameter"
	if c == nil || c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewError(domain.KindValidation, op, "empty_name", nil)
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	var notFound *types.ParameterNotFound
	switch {
	case errors.As(err, &notFound):
		return "", domain.NewError(domain.KindConfiguration, op, "parameter_not_found", fmt.Errorf("%q: %w", name, err))
	case err != nil:
		return "", domain.NewError(domain.KindIO, op, "ssm_call", fmt.Errorf("%q: %w", name, err))
	}
	if out == nil || out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", domain.NewError(domain.KindConfiguration, op, "empty_value", fmt.Errorf("parameter %q has no value", name))
	}
	return *out.Parameter.Value, nil
}

// GetJSON decodes the JSON secret stored under name into v.
func GetJSON(ctx context.Context, g Getter, name string, v any) error {
	if g == nil {
		return errors.New("paramstore: getter must not be nil")
	}
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return domain.NewError(domain.KindConfiguration, "paramstore: GetJSON", "invalid_json", fmt.Errorf("%q: %w", name, err))
	}
	return nil
}
