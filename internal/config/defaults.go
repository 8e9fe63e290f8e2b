package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ganitha/data/db/engine.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/ganitha/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/ganitha/data/indices/vectors.idx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 64
	}
	if cfg.Mastery.Alpha0 == 0 {
		cfg.Mastery.Alpha0 = 0.2
	}
	if cfg.Mastery.AlphaMin == 0 {
		cfg.Mastery.AlphaMin = 0.05
	}
	if cfg.Mastery.ConfidenceCap == 0 {
		cfg.Mastery.ConfidenceCap = 200
	}
	if cfg.Mastery.PromoteStreak == 0 {
		cfg.Mastery.PromoteStreak = 3
	}
	if cfg.Mastery.PromoteCutoff == 0 {
		cfg.Mastery.PromoteCutoff = 0.75
	}
	if cfg.Mastery.DemoteStreak == 0 {
		cfg.Mastery.DemoteStreak = 2
	}
	if cfg.Mastery.DemoteCutoff == 0 {
		cfg.Mastery.DemoteCutoff = 0.4
	}
	if cfg.Style.TimePenalty == 0 {
		cfg.Style.TimePenalty = 0.3
	}
	if cfg.Style.Blend == 0 {
		cfg.Style.Blend = 0.3
	}
	if cfg.Style.MinEvents == 0 {
		cfg.Style.MinEvents = 5
	}
	if cfg.Style.WindowSize == 0 {
		cfg.Style.WindowSize = 50
	}
	if cfg.Recommend.BandWidth == 0 {
		cfg.Recommend.BandWidth = 1
	}
	if cfg.Recommend.SeedHistory == 0 {
		cfg.Recommend.SeedHistory = 5
	}
	if cfg.Recommend.CandidateMultiplier == 0 {
		cfg.Recommend.CandidateMultiplier = 3
	}
	if cfg.Recommend.SimilarityWeight == 0 {
		cfg.Recommend.SimilarityWeight = 0.6
	}
	if cfg.Recommend.StyleWeight == 0 {
		cfg.Recommend.StyleWeight = 0.4
	}
	if cfg.Topic.DefaultMin == 0 {
		cfg.Topic.DefaultMin = 1
	}
	if cfg.Topic.DefaultMax == 0 {
		cfg.Topic.DefaultMax = 10
	}
	if cfg.Topic.DefaultStart == 0 {
		cfg.Topic.DefaultStart = 3
	}
}
