package config

// DefaultUserAgent identifies the crawler unless overridden by flag or config.
const DefaultUserAgent = "lgraba-crawler-bot/1.0"

// defaultBlacklistExtensions lists static-asset and binary extensions that
// rarely contain followable hyperlinks. Used when no blacklist is configured.
var defaultBlacklistExtensions = []string{
	".7z", ".avi", ".bmp", ".css", ".doc", ".docx", ".dmg", ".eot",
	".exe", ".flv", ".gif", ".gz", ".ico", ".iso", ".jpeg", ".jpg",
	".js", ".json", ".mov", ".mp3", ".mp4", ".mpeg", ".mpg", ".ogg",
	".otf", ".pdf", ".png", ".ppt", ".pptx", ".rar", ".svg", ".tar",
	".tiff", ".ttf", ".wav", ".webm", ".webp", ".wmv", ".woff",
	".woff2", ".xls", ".xlsx", ".xml", ".zip",
}

// DefaultBlacklistExtensions returns a copy of the default extension set.
func DefaultBlacklistExtensions() []string {
	out := make([]string, len(defaultBlacklistExtensions))
	copy(out, defaultBlacklistExtensions)
	return out
}
