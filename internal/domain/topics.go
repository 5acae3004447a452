package domain

// Bus topics.
const (
	TopicInventoryUpdate   = "inventory_update"
	TopicCartInsight       = "cart_behavior_insight"
	TopicCompetitorUpdate  = "competitor_price_update"
	TopicBundleRecommended = "bundle_recommendation"
	TopicPriceRecommended  = "price_change_recommendation"
	TopicLowStockAlert     = "low_stock_alert"
	TopicBehaviorShared    = "behavior_insight_shared"
	TopicCompetitorShared  = "competitor_price_shared"
)

// Agent names.
const (
	AgentInventory   = "inventory_monitor"
	AgentCart        = "cart_behavior"
	AgentCompetitor  = "competitor_pricing"
	AgentBundler     = "dynamic_bundler"
	AgentPricing     = "dynamic_pricing"
	AgentCoordinator = "orchestrator"
)
