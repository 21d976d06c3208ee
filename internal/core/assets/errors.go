package assets

import "errors"

var (
	ErrAssetNotFound  = errors.New("asset not found")
	ErrMalformedAsset = errors.New("malformed asset")
)
