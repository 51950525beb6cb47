package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/internal/pkg/cache"
	"github.com/skillmarket/SkillMarket/internal/pkg/database"
)

const (
	CacheKeyRevenueTotal   = "statistics:revenue:total"
	CacheKeyPurchasesTotal = "statistics:purchases:total"
	CacheKeyPurchasesDaily = "statistics:purchases:daily:%s" // Format with date YYYY-MM-DD
	CacheExpiration        = 30 * time.Minute
)

// RevenueData holds the aggregates shown on the admin revenue dashboard
type RevenueData struct {
	TotalRevenue   int64 `json:"total_revenue"` // smallest currency unit
	TotalPurchases int   `json:"total_purchases"`
	TodayPurchases int   `json:"today_purchases"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached aggregates are due a refresh
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached aggregates when due
func UpdateCacheIfNeeded() {
	if !ShouldUpdateCache() {
		return
	}
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	data, err := computeRevenue()
	if err != nil {
		log.Printf("statistics: failed to compute revenue aggregates: %v", err)
		return
	}

	_ = cache.Set(CacheKeyRevenueTotal, data.TotalRevenue, CacheExpiration)
	_ = cache.Set(CacheKeyPurchasesTotal, data.TotalPurchases, CacheExpiration)
	dailyKey := fmt.Sprintf(CacheKeyPurchasesDaily, time.Now().Format("2006-01-02"))
	_ = cache.Set(dailyKey, data.TodayPurchases, CacheExpiration)
	lastCacheUpdate = time.Now()
}

// GetRevenueData returns revenue aggregates, preferring the Redis cache and
// falling back to direct aggregation
func GetRevenueData() (*RevenueData, error) {
	UpdateCacheIfNeeded()

	data := &RevenueData{}
	hit := true
	if v, err := cache.Get(CacheKeyRevenueTotal); err == nil {
		if total, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			data.TotalRevenue = total
		} else {
			hit = false
		}
	} else {
		hit = false
	}
	if v, err := cache.GetInt(CacheKeyPurchasesTotal); err == nil {
		data.TotalPurchases = v
	} else {
		hit = false
	}
	dailyKey := fmt.Sprintf(CacheKeyPurchasesDaily, time.Now().Format("2006-01-02"))
	if v, err := cache.GetInt(dailyKey); err == nil {
		data.TodayPurchases = v
	} else {
		hit = false
	}

	if hit {
		return data, nil
	}
	return computeRevenue()
}

func computeRevenue() (*RevenueData, error) {
	db := database.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database unavailable")
	}

	data := &RevenueData{}
	today := time.Now().Format("2006-01-02")

	for _, t := range []models.ProductType{models.ProductTypeVideo, models.ProductTypeCourse, models.ProductTypePrompt} {
		table := t.PurchasesTable()

		var revenue *int64
		if err := db.Table(table).
			Where("status = ?", models.PurchaseStatusActive).
			Select("SUM(price_paid)").Scan(&revenue).Error; err != nil {
			return nil, err
		}
		if revenue != nil {
			data.TotalRevenue += *revenue
		}

		var total int64
		if err := db.Table(table).
			Where("status = ?", models.PurchaseStatusActive).
			Count(&total).Error; err != nil {
			return nil, err
		}
		data.TotalPurchases += int(total)

		var daily int64
		if err := db.Table(table).
			Where("status = ? AND DATE(created_at) = ?", models.PurchaseStatusActive, today).
			Count(&daily).Error; err != nil {
			return nil, err
		}
		data.TodayPurchases += int(daily)
	}

	return data, nil
}
