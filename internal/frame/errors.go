package frame

import "errors"

var (
	ErrIndexSpec         = errors.New("frame: invalid index spec")
	ErrTableConstruction = errors.New("frame: table construction failed")
	ErrDictionaryBound   = errors.New("frame: dictionary already bound")
	ErrViewType          = errors.New("frame: view element type mismatch")
)
