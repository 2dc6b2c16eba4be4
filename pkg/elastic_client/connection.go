package elastic_client

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
)

const maxRetries = 5

// Connect builds a client from the BIKERACCOON_ELASTICSEARCH_* variables. Elasticsearch is
// optional: without an address it returns a nil client and no error.
func Connect() (*elasticsearch.Client, error) {
	env := util.GetEnvironmentVariables()

	address := env["BIKERACCOON_ELASTICSEARCH_ADDRESS"]
	if address == "" {
		log.Info().Msg("Skipping Elasticsearch setup")
		return nil, nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if env["BIKERACCOON_ELASTICSEARCH_INSECURE"] == "YES" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	retryBackoff := backoff.NewExponentialBackOff()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{address},
		Username:  env["BIKERACCOON_ELASTICSEARCH_USERNAME"],
		Password:  env["BIKERACCOON_ELASTICSEARCH_PASSWORD"],
		Transport: transport,

		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(attempt int) time.Duration {
			if attempt == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: maxRetries,
	})
	if err != nil {
		return nil, err
	}

	info, err := client.Info()
	if err != nil {
		return nil, err
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, &ResponseError{Operation: "info", Status: info.String()}
	}

	log.Info().Str("address", address).Msg("Elasticsearch client setup")

	return client, nil
}

// ResponseError is an Elasticsearch answer with an error status
type ResponseError struct {
	Operation string
	Status    string
}

func (e *ResponseError) Error() string {
	return "elasticsearch " + e.Operation + ": " + e.Status
}
