package multiauth

import "context"

// Profile returns the public projection of userID: identifiers, verified
// channels, and every role grant with its status.
func (e *Engine) Profile(ctx context.Context, userID string) (_ *UserProjection, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, end := e.begin(ctx, opProfile)
	defer end(&err)

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := projectUser(u)
	return &p, nil
}
