package admin

import "errors"

var (
	ErrNotAdmin           = errors.New("administrator privilege required")
	ErrSuperAdminRequired = errors.New("super administrator privilege required")
	ErrAdminNotFound      = errors.New("admin record not found")
	ErrNothingToUpdate    = errors.New("no settings supplied")
	ErrInvalidSetting     = errors.New("invalid setting value")
	ErrInvalidAdminLevel  = errors.New("admin_level must be admin or super_admin")
)
