package errs

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

// ConfigNotFoundError is returned when no widget configuration exists for a
// requested widget key.
type ConfigNotFoundError struct {
	ErrorMessage
}

// ConfigInactiveError is returned when a widget configuration exists but has
// been deactivated.
type ConfigInactiveError struct {
	ErrorMessage
}

// InvalidViewIdentifierError marks a configured view that failed identifier
// validation. The view is never interpolated into SQL in that case.
type InvalidViewIdentifierError struct {
	ErrorMessage
}

// InvalidFilterValueError is returned when a supplied filter value cannot be
// coerced to the physical column type.
type InvalidFilterValueError struct {
	ErrorMessage
}

// UnknownOrderColumnError is returned when order_by references a column the
// live view does not have.
type UnknownOrderColumnError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
}

type DatabaseError struct {
	ErrorMessage
	Operation string
}

func NewConfigNotFoundError(widgetKey string) *ConfigNotFoundError {
	return &ConfigNotFoundError{
		ErrorMessage: ErrorMessage{Message: "no widget configuration for key: " + widgetKey},
	}
}

func NewConfigInactiveError(widgetKey string) *ConfigInactiveError {
	return &ConfigInactiveError{
		ErrorMessage: ErrorMessage{Message: "widget configuration is inactive: " + widgetKey},
	}
}

func NewInvalidViewIdentifierError(message string) *InvalidViewIdentifierError {
	return &InvalidViewIdentifierError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewInvalidFilterValueError(message string) *InvalidFilterValueError {
	return &InvalidFilterValueError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewUnknownOrderColumnError(column string) *UnknownOrderColumnError {
	return &UnknownOrderColumnError{
		ErrorMessage: ErrorMessage{Message: "unknown order column: " + column},
	}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewDatabaseError(operation, message string) *DatabaseError {
	return &DatabaseError{
		ErrorMessage: ErrorMessage{Message: message},
		Operation:    operation,
	}
}
