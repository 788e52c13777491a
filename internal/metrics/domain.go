package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sectionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvbuilder",
			Subsystem: "resume",
			Name:      "sections_created_total",
			Help:      "按类型统计的新建分区数量。",
		},
		[]string{"type"},
	)

	sharesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvbuilder",
			Subsystem: "resume",
			Name:      "shares_total",
			Help:      "分享请求数量，outcome 区分新签发与复用。",
		},
		[]string{"outcome"},
	)

	publicViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvbuilder",
			Subsystem: "public",
			Name:      "views_total",
			Help:      "公开简历访问次数，cache 区分缓存命中情况。",
		},
		[]string{"cache"},
	)
)

// SectionCreated 记录一次分区创建。
func SectionCreated(sectionType string) {
	sectionsCreatedTotal.WithLabelValues(sectionType).Inc()
}

// ShareIssued 记录分享结果：reused 为 true 表示返回了已有令牌。
func ShareIssued(reused bool) {
	outcome := "issued"
	if reused {
		outcome = "reused"
	}
	sharesTotal.WithLabelValues(outcome).Inc()
}

// PublicViewed 记录一次公开访问。
func PublicViewed(cacheHit bool) {
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	publicViewsTotal.WithLabelValues(label).Inc()
}
