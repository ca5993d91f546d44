package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type resourceRequest struct {
	URL string `json:"url"`
}

// ResourceStatusHandler asks the cache workers whether an app asset
// (style, font, shell file) is already held offline.
func ResourceStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url := c.Query("url")
		if !validResourceURL(url) {
			return errBadRequest(c, "url query parameter must be an http(s) URL")
		}
		if deps.Resources == nil {
			return errInternal(c, "resource cache not available")
		}
		return c.JSON(fiber.Map{
			"url":    url,
			"cached": deps.Resources.CheckCached(c.UserContext(), url),
		})
	}
}

// CacheResourceHandler asks the cache workers to fetch and hold an asset.
func CacheResourceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req resourceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if !validResourceURL(req.URL) {
			return errBadRequest(c, "url must be an http(s) URL")
		}
		if deps.Resources == nil {
			return errInternal(c, "resource cache not available")
		}
		if err := deps.Resources.CacheNow(c.UserContext(), req.URL); err != nil {
			return errBadGateway(c, err.Error())
		}
		return c.Status(202).JSON(fiber.Map{"url": req.URL, "status": "caching"})
	}
}

func validResourceURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
