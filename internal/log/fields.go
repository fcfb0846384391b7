package log

// Field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldRoute       = "route"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldCycle       = "cycle"
	FieldStep        = "step"
	FieldCategory    = "category"
	FieldKind        = "kind"
	FieldEntryID     = "entry_id"
	FieldEntryDate   = "entry_date"
	FieldAmountCents = "amount_cents"
	FieldQueue       = "queue"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentReconcile = "reconcile"
	ComponentEntries   = "entries"
	ComponentProfile   = "profile"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentAuth      = "auth"
	ComponentBackend   = "backend"
)

const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpAppend    = "append"
	OpReconcile = "reconcile"
	OpSweep     = "sweep"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// Error type categories, logged under FieldErrorType.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// Fields builds a slog argument list.
type Fields []any

func NewFields() Fields {
	return make(Fields, 0, 12)
}

func (f Fields) With(key string, value any) Fields {
	return append(f, key, value)
}

func (f Fields) WithComponent(component string) Fields {
	return f.With(FieldComponent, component)
}

func (f Fields) WithOperation(op string) Fields {
	return f.With(FieldOperation, op)
}

func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return f.With(FieldError, err.Error())
}

func (f Fields) WithErrorType(errorType string) Fields {
	return f.With(FieldErrorType, errorType)
}

func (f Fields) WithUser(userID int64) Fields {
	return f.With(FieldUserID, userID)
}

// WithEntry adds the fields identifying a ledger entry.
func (f Fields) WithEntry(id int64, category, kind, date string, amountCents int64) Fields {
	return f.
		With(FieldEntryID, id).
		With(FieldCategory, category).
		With(FieldKind, kind).
		With(FieldEntryDate, date).
		With(FieldAmountCents, amountCents)
}

func (f Fields) Args() []any {
	return f
}
