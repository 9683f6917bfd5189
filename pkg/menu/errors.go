package menu

import "errors"

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

var (
	ErrTemplateNotFound    = errors.New("menu: template not found")
	ErrDuplicateTemplate   = errors.New("menu: template already registered")
	ErrEmptyTemplateID     = errors.New("menu: template id is empty")
	ErrNilTemplate         = errors.New("menu: template is nil")
	ErrCallbackDataTooLong = errors.New("menu: callback_data too long")
	ErrInvalidRenderID     = errors.New("menu: invalid render id")

	// ErrStorage wraps every failure reported by a Storage backend.
	ErrStorage = errors.New("menu: storage failure")
)
