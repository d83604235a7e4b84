package manifest

import "errors"

var ErrRecipe = errors.New("invalid recipe")
