package middleware

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/semaphore"
)

// Workers bounds the number of requests handled at once to n. Requests over
// the limit wait for a free slot until their context ends.
func Workers(n int) fiber.Handler {
	if n <= 0 {
		n = 1
	}
	sem := semaphore.NewWeighted(int64(n))

	return func(c *fiber.Ctx) error {
		if err := sem.Acquire(c.UserContext(), 1); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "server busy")
		}
		defer sem.Release(1)
		return c.Next()
	}
}
