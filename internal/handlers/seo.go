package handlers

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

const sitemapPages = 10

type SEOHandler struct {
	threads *services.ThreadService
	siteURL string
}

func NewSEOHandler(svc *services.Services, siteURL string) *SEOHandler {
	return &SEOHandler{threads: svc.Threads, siteURL: strings.TrimRight(siteURL, "/")}
}

func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /
Disallow: /api/

Sitemap: %s/sitemap.xml
`, h.siteURL)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

// SitemapXML lists the home page and the most recent public threads.
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	fmt.Fprintf(&b, "  <url>\n    <loc>%s/</loc>\n    <changefreq>daily</changefreq>\n    <priority>1.0</priority>\n  </url>\n", h.siteURL)

	for p := 1; p <= sitemapPages; p++ {
		page, err := h.threads.GetThreads(c.Request.Context(), services.ThreadFilter{
			Page: p, Limit: 100, OnlyPublished: true, SortBy: "updated_at",
		})
		if err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
			return
		}
		for _, t := range page.Threads {
			if t.IsPrivate {
				continue
			}
			fmt.Fprintf(&b, "  <url>\n    <loc>%s/t/%s</loc>\n    <lastmod>%s</lastmod>\n    <changefreq>weekly</changefreq>\n    <priority>0.8</priority>\n  </url>\n",
				h.siteURL, html.EscapeString(t.ID), t.UpdatedAt.Format("2006-01-02"))
		}
		if int64(p*page.Limit) >= page.Total {
			break
		}
	}
	b.WriteString("</urlset>\n")
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(b.String()))
}
