package middleware

import "github.com/danielgtaylor/huma/v2"

// Container accumulates the middleware chain for one handler and hands it
// over, so route wiring reads top to bottom.
type Container struct {
	chain huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Add(mw func(huma.Context, func(huma.Context))) {
	c.chain = append(c.chain, mw)
}

// GetAllAndClear returns the accumulated chain and resets the container for
// the next handler.
func (c *Container) GetAllAndClear() huma.Middlewares {
	chain := c.chain
	c.chain = nil
	return chain
}
