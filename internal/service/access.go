package service

import "mycloud/internal/model"

// CanAccess : владелец узла или администратор
func CanAccess(actor model.Actor, node *model.StoredFile) bool {
	return node != nil && (actor.IsAdmin || node.OwnerID == actor.UserID)
}

// CanActAs : действовать от имени ownerID может сам владелец или администратор
func CanActAs(actor model.Actor, ownerID int64) bool {
	return actor.IsAdmin || actor.UserID == ownerID
}
