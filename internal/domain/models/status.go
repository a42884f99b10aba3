package models

// ItemStatus статус исполнения строки заказа
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusShipped   ItemStatus = "shipped"
	ItemStatusDelivered ItemStatus = "delivered"
)

// itemTransitions - единственный допустимый следующий статус для каждого статуса.
// Из delivered переходов нет.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:   {ItemStatusShipped},
	ItemStatusShipped:   {ItemStatusDelivered},
	ItemStatusDelivered: {},
}

// ToItemStatus проверяет строковое значение статуса
func ToItemStatus(s string) (ItemStatus, error) {
	status := ItemStatus(s)
	if _, ok := itemTransitions[status]; ok {
		return status, nil
	}
	return "", &IllegalTransitionError{To: status}
}

// CanTransition сообщает, разрешён ли переход from -> to
func CanTransition(from, to ItemStatus) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal - из статуса нет переходов
func (s ItemStatus) IsTerminal() bool {
	return len(itemTransitions[s]) == 0
}
