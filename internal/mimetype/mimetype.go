// Package mimetype classifies files by extension. There is no content sniffing.
package mimetype

import (
	"path/filepath"
	"strings"
)

const Default = "application/octet-stream"

func ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ContentType returns the MIME type served for name.
func ContentType(name string) string {
	switch ext(name) {
	case "html", "htm":
		return "text/html"
	case "css":
		return "text/css"
	case "js":
		return "application/javascript"
	case "json":
		return "application/json"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	case "pdf":
		return "application/pdf"
	case "txt", "md":
		return "text/plain"
	default:
		return Default
	}
}

// IsThumbnailable reports whether the thumbnailer can decode name.
func IsThumbnailable(name string) bool {
	switch ext(name) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

// Category groups files for the listing page's icons.
type Category int

const (
	Generic Category = iota
	Folder
	PDF
	Document
	Spreadsheet
	Presentation
	Image
	Audio
	Video
	Archive
	Executable
	Web
	Style
	Script
	Code
	Text
	Config
	Package
	Mobile
	Disc
	Torrent
	Backup
)

var icons = map[Category]string{
	Generic:      "📄",
	Folder:       "📁",
	PDF:          "📄",
	Document:     "📝",
	Spreadsheet:  "📊",
	Presentation: "📑",
	Image:        "🖼️",
	Audio:        "🎵",
	Video:        "🎬",
	Archive:      "🗜️",
	Executable:   "⚙️",
	Web:          "🌐",
	Style:        "🎨",
	Script:       "📜",
	Code:         "💻",
	Text:         "📃",
	Config:       "🔧",
	Package:      "📦",
	Mobile:       "📱",
	Disc:         "💿",
	Torrent:      "🧲",
	Backup:       "🗑️",
}

// Icon returns the emoji shown next to entries of this category.
func (c Category) Icon() string {
	if s, ok := icons[c]; ok {
		return s
	}
	return icons[Generic]
}

// CategoryOf classifies a file name. Directories are the caller's business.
func CategoryOf(name string) Category {
	// ".gitignore" has no stem, so its whole name after the dot counts.
	switch ext(name) {
	case "pdf":
		return PDF
	case "doc", "docx":
		return Document
	case "xls", "xlsx":
		return Spreadsheet
	case "ppt", "pptx":
		return Presentation
	case "jpg", "jpeg", "png", "gif", "bmp", "svg", "webp":
		return Image
	case "mp3", "wav", "ogg", "flac":
		return Audio
	case "mp4", "avi", "mov", "wmv", "mkv":
		return Video
	case "zip", "rar", "7z", "tar", "gz":
		return Archive
	case "exe", "msi", "app":
		return Executable
	case "html", "htm":
		return Web
	case "css":
		return Style
	case "js", "ts":
		return Script
	case "rs", "go", "py", "java", "c", "cpp", "cs":
		return Code
	case "md", "txt":
		return Text
	case "json", "xml", "yaml", "yml":
		return Config
	case "git", "gitignore":
		return Package
	case "apk":
		return Mobile
	case "iso":
		return Disc
	case "torrent":
		return Torrent
	case "bak", "old", "temp":
		return Backup
	default:
		return Generic
	}
}
