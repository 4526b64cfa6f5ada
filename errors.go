package hangoutstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// ResourceNotFoundError is returned when a canonical record does not exist.
type ResourceNotFoundError struct {
	Resource string
	ID       string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransactionFailedError is returned when a transaction, or a single
// versioned write, was rejected because one of its conditions did not hold.
// Callers usually reload the affected records and try again.
type TransactionFailedError struct {
	Operation string
	// Reasons holds one cancellation code per transaction item, in request
	// order. "None" marks items whose condition held.
	Reasons []string
	Err     error
}

func (e *TransactionFailedError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("%s: transaction failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: transaction failed [%s]: %v", e.Operation, strings.Join(e.Reasons, ", "), e.Err)
}

func (e *TransactionFailedError) Unwrap() error { return e.Err }

// ConditionFailedAt reports whether the item at index i of the transaction
// failed its condition.
func (e *TransactionFailedError) ConditionFailedAt(i int) bool {
	return i >= 0 && i < len(e.Reasons) && e.Reasons[i] == "ConditionalCheckFailed"
}

// RepositoryError wraps any other failure of the underlying store.
type RepositoryError struct {
	Operation string
	// Code is the AWS error code when one is available.
	Code string
	Err  error
}

func (e *RepositoryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a ResourceNotFoundError.
func IsNotFound(err error) bool {
	var target *ResourceNotFoundError
	return errors.As(err, &target)
}

// IsTransactionFailed reports whether err is, or wraps, a TransactionFailedError.
func IsTransactionFailed(err error) bool {
	var target *TransactionFailedError
	return errors.As(err, &target)
}

// IsRepositoryError reports whether err is, or wraps, a RepositoryError.
func IsRepositoryError(err error) bool {
	var target *RepositoryError
	return errors.As(err, &target)
}

func notFound(resource, id string) error {
	return &ResourceNotFoundError{Resource: resource, ID: id}
}

// isConditionalCheckFailed reports whether err is a single item condition
// failure.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// classifyError maps a store error into the package error taxonomy.
// Transaction cancellations and condition failures become
// TransactionFailedError; everything else becomes RepositoryError.
func classifyError(operation string, err error) error {
	if err == nil {
		return nil
	}

	// already classified
	var (
		tfe *TransactionFailedError
		rpe *RepositoryError
		nfe *ResourceNotFoundError
	)
	if errors.As(err, &tfe) || errors.As(err, &rpe) || errors.As(err, &nfe) {
		return err
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := make([]string, 0, len(tce.CancellationReasons))
		for _, reason := range tce.CancellationReasons {
			code := "None"
			if reason.Code != nil {
				code = *reason.Code
			}
			reasons = append(reasons, code)
		}
		return &TransactionFailedError{Operation: operation, Reasons: reasons, Err: err}
	}

	if isConditionalCheckFailed(err) {
		return &TransactionFailedError{
			Operation: operation,
			Reasons:   []string{"ConditionalCheckFailed"},
			Err:       err,
		}
	}

	var code string
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code = ae.ErrorCode()
	}
	return &RepositoryError{Operation: operation, Code: code, Err: err}
}
