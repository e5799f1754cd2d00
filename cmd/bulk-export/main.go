// Command bulk-export runs one bulk query against a Salesforce org and
// writes the results as CSV to stdout.
package main

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/forcekit/sf-bulk-client/pkg/bulk"
	"github.com/forcekit/sf-bulk-client/pkg/client"
	"github.com/forcekit/sf-bulk-client/pkg/logging"
	"github.com/forcekit/sf-bulk-client/pkg/oauth"
	"github.com/forcekit/sf-bulk-client/pkg/sobject"
	"github.com/rs/zerolog"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:   getEnv("LOG_LEVEL", "info"),
		Console: true,
	})

	// Exit only after run has returned, so the deferred job teardown
	// inside has already executed on failure paths.
	if err := run(context.Background(), logger, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("Export failed")
	}
}

func run(ctx context.Context, logger zerolog.Logger, out io.Writer) error {
	object := os.Getenv("SF_OBJECT")
	if object == "" {
		return fmt.Errorf("SF_OBJECT is required")
	}

	authenticate, err := oauth.PasswordAuthenticator(oauth.Config{
		Endpoint:     getEnv("SF_LOGIN_URL", oauth.DefaultEndpoint),
		ClientID:     os.Getenv("SF_CLIENT_ID"),
		ClientSecret: os.Getenv("SF_CLIENT_SECRET"),
		Username:     os.Getenv("SF_USERNAME"),
		Password:     os.Getenv("SF_PASSWORD"),
	})
	if err != nil {
		return fmt.Errorf("oauth configuration: %w", err)
	}

	apiClient, err := client.New(client.Config{
		Authenticate: authenticate,
		Version:      getEnv("SF_API_VERSION", "57.0"),
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	describer := sobject.NewDescriber(apiClient, nil)
	metadata, err := describer.Describe(ctx, object)
	if err != nil {
		return fmt.Errorf("describe %s: %w", object, err)
	}

	fields := splitFields(os.Getenv("SF_FIELDS"))
	if len(fields) == 0 {
		fields = metadata.QueryableFieldNames()
	}

	query, err := bulk.NewQuery(apiClient, metadata, bulk.Options{
		Fields:  fields,
		Where:   os.Getenv("SF_WHERE"),
		OrderBy: os.Getenv("SF_ORDER_BY"),
		Limit:   getEnvInt("SF_LIMIT", 0),
		Timeout: time.Duration(getEnvInt("SF_TIMEOUT_SECONDS", 0)) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := query.Start(ctx); err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	defer query.Close(ctx)

	writer := csv.NewWriter(out)
	if err := writer.Write(fields); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	count := 0
	for {
		record, err := query.Next(ctx)
		if errors.Is(err, bulk.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("read results: %w", err)
		}

		row := make([]string, len(fields))
		for i, name := range fields {
			row[i] = formatValue(record[name])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		count++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	logger.Info().Int("records", count).Str("object", object).Msg("Export complete")
	return nil
}

// splitFields parses a comma-separated field list, trimming whitespace.
func splitFields(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			fields = append(fields, name)
		}
	}
	return fields
}

// formatValue renders a decoded value back into a CSV cell.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return fmt.Sprint(v)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
