package config

import "github.com/spf13/pflag"

// RegisterFlags registers the command-line flags that can override
// configuration values
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int("grpc-port", 0, "gRPC listen port")
	flags.Int("http-port", 0, "HTTP listen port")
	flags.String("store-type", "", "keyed store backend (dynamodb, memory)")
	flags.String("store-table", "", "DynamoDB table name")
	flags.String("store-region", "", "AWS region")
	flags.String("store-endpoint", "", "DynamoDB endpoint override")
	flags.String("authority-endpoint", "", "identity authority base URL")
	flags.String("queue-url", "", "SQS queue URL for ingestion")
	flags.String("log-level", "", "default log level (debug, info, warn, error)")
}

// GetFlagMapping maps flag names to configuration keys
func GetFlagMapping() map[string]string {
	return map[string]string{
		"grpc-port":          "server.grpc_port",
		"http-port":          "server.http_port",
		"store-type":         "store.type",
		"store-table":        "store.table",
		"store-region":       "store.region",
		"store-endpoint":     "store.endpoint",
		"authority-endpoint": "authority.endpoint",
		"queue-url":          "ingest.queue_url",
		"log-level":          "observability.log_level",
	}
}
