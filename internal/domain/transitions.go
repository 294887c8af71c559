package domain

// sellerTransitions is the forward fulfillment path a seller may drive.
// Cancelled sales may still be refunded; everything else past a terminal
// state needs an admin.
var sellerTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusPending:        {SaleStatusConfirmed, SaleStatusCancelled},
	SaleStatusConfirmed:      {SaleStatusProcessing, SaleStatusCancelled},
	SaleStatusProcessing:     {SaleStatusPreparing, SaleStatusCancelled},
	SaleStatusPreparing:      {SaleStatusReadyForPickup, SaleStatusInTransit},
	SaleStatusReadyForPickup: {SaleStatusCompleted},
	SaleStatusInTransit:      {SaleStatusCompleted},
	SaleStatusCancelled:      {SaleStatusRefunded},
}

// CanTransition reports whether the role may move a sale from one status to
// another. Admins are unrestricted between known statuses; customers are
// read-only.
func CanTransition(role Role, from, to SaleStatus) bool {
	if !ValidSaleStatus(from) || !ValidSaleStatus(to) {
		return false
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleSeller:
		for _, allowed := range sellerTransitions[from] {
			if allowed == to {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// AllowedTransitions returns the statuses the role may move to from the given
// status. The slice is a copy; callers may mutate it freely.
func AllowedTransitions(role Role, from SaleStatus) []SaleStatus {
	if !ValidSaleStatus(from) {
		return nil
	}
	switch role {
	case RoleAdmin:
		return []SaleStatus{
			SaleStatusPending, SaleStatusConfirmed, SaleStatusProcessing,
			SaleStatusPreparing, SaleStatusReadyForPickup, SaleStatusInTransit,
			SaleStatusCompleted, SaleStatusCancelled, SaleStatusRefunded,
		}
	case RoleSeller:
		return append([]SaleStatus(nil), sellerTransitions[from]...)
	default:
		return nil
	}
}
