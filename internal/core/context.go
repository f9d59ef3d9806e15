package core

type ctxKey string

// CtxKeyUsername carries the authenticated principal's username through the
// request context.
const CtxKeyUsername ctxKey = "username"
