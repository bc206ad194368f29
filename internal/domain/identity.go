package domain

// IdentityKind различает способ идентификации покупателя.
type IdentityKind string

const (
	// IdentityAuthenticated — авторизованный покупатель с постоянным ID.
	IdentityAuthenticated IdentityKind = "authenticated"
	// IdentityAnonymous — анонимная сессия, идентифицируемая по токену корзины.
	IdentityAnonymous IdentityKind = "anonymous"
)

// Identity — tagged union «авторизованный XOR анонимный».
// Нулевое значение невалидно: создать Identity можно только через
// конструкторы, поэтому инвариант взаимоисключения соблюдается по построению.
type Identity struct {
	kind  IdentityKind
	value string
}

// NewAuthenticatedIdentity создаёт identity авторизованного покупателя.
func NewAuthenticatedIdentity(customerID string) (Identity, error) {
	if customerID == "" {
		return Identity{}, ErrIdentityRequired
	}
	return Identity{kind: IdentityAuthenticated, value: customerID}, nil
}

// NewAnonymousIdentity создаёт identity анонимной сессии по токену.
func NewAnonymousIdentity(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrIdentityRequired
	}
	return Identity{kind: IdentityAnonymous, value: token}, nil
}

// RestoreIdentity восстанавливает identity из хранилища без валидации бизнес-правил.
// Используется только репозиториями при чтении строк.
func RestoreIdentity(kind IdentityKind, value string) Identity {
	return Identity{kind: kind, value: value}
}

// Kind возвращает способ идентификации.
func (i Identity) Kind() IdentityKind { return i.kind }

// Value возвращает ID покупателя либо анонимный токен.
func (i Identity) Value() string { return i.value }

// IsZero сообщает, что identity не была создана через конструктор.
func (i Identity) IsZero() bool { return i.kind == "" || i.value == "" }

// Authenticated сообщает, что identity принадлежит авторизованному покупателю.
func (i Identity) Authenticated() bool { return i.kind == IdentityAuthenticated }

// Equal сравнивает две identity по виду и значению.
func (i Identity) Equal(other Identity) bool {
	return i.kind == other.kind && i.value == other.value
}
