package elasticsearch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/wrap"
)

const elasticIndexNotFoundException = "index_not_found_exception"

// Error response from Elasticsearch. The typed client's own error message only includes the
// status, so this describes the error cause and its root causes instead. Its separators avoid
// ": ", which wrap renders as the start of a nested cause.
type responseError struct {
	response *types.ElasticsearchError
}

func (err responseError) Error() string {
	var message strings.Builder
	message.WriteString(describeErrorCause(err.response.ErrorCause))
	fmt.Fprintf(&message, ", status %d", err.response.Status)

	for i, rootCause := range err.response.ErrorCause.RootCause {
		if i == 0 {
			message.WriteString(", caused by ")
		} else {
			message.WriteString("; ")
		}
		message.WriteString(describeErrorCause(rootCause))
	}

	return message.String()
}

func (err responseError) Unwrap() error {
	return err.response
}

func describeErrorCause(cause types.ErrorCause) string {
	if cause.Reason == nil {
		return cause.Type
	}
	return fmt.Sprintf("%s (%s)", *cause.Reason, cause.Type)
}

// Wraps an error from the typed client, describing Elasticsearch error responses by their causes.
func wrapElasticErrorf(err error, format string, args ...any) error {
	var elasticErr *types.ElasticsearchError
	if errors.As(err, &elasticErr) {
		err = responseError{response: elasticErr}
	}
	return wrap.Errorf(err, format, args...)
}

func isIndexNotFoundError(err error) bool {
	var elasticErr *types.ElasticsearchError
	return errors.As(err, &elasticErr) && elasticErr.ErrorCause.Type == elasticIndexNotFoundException
}
