package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/tender_rag_server/config"
)

func TestGetURL(t *testing.T) {
	cfg := &config.OSSConfig{
		Endpoint:        "oss-cn-hangzhou.aliyuncs.com",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		BucketName:      "tender-reports",
	}

	t.Run("bucket domain", func(t *testing.T) {
		c, err := NewClient(cfg)
		require.NoError(t, err)

		assert.Equal(t, "https://tender-reports.oss-cn-hangzhou.aliyuncs.com/reports/20240101/a.xlsx",
			c.GetURL("reports/20240101/a.xlsx"))
	})

	t.Run("cdn domain", func(t *testing.T) {
		withCDN := *cfg
		withCDN.CDNDomain = "cdn.example.com"
		c, err := NewClient(&withCDN)
		require.NoError(t, err)

		assert.Equal(t, "https://cdn.example.com/reports/a.xlsx", c.GetURL("reports/a.xlsx"))
	})
}
