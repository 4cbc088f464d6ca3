// Package main provides localization for the viteo CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Extract decoded frames from video files": "動画ファイルからデコード済みフレームを抽出",

		// Global flags
		"YAML configuration file":                         "YAML設定ファイル",
		"Decoder engine (auto, videotoolbox, ffmpeg)":     "デコーダーエンジン（auto, videotoolbox, ffmpeg）",
		"Path to the ffmpeg executable":                   "ffmpeg実行ファイルのパス",
		"Frames decoded per bulk batch":                   "一括抽出のバッチあたりフレーム数",
		"Frames per streamed batch":                       "ストリーミングのバッチあたりフレーム数",
		"Queue capacity in frames (0 = unbounded)":        "キューの容量（フレーム数、0 = 無制限）",
		"Reusable frame buffers (0 = allocate per frame)": "再利用するフレームバッファ数（0 = フレームごとに確保）",
		"Channel order of streamed frames (bgra, rgba, bgr, rgb)": "ストリーミングするフレームのチャンネル順（bgra, rgba, bgr, rgb）",
		"Log level (debug, info, warn, error)":                    "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                                 "全てのログ出力を抑制",

		// Info command
		"Show stream properties of video files":    "動画ファイルのストリーム情報を表示",
		"%s: %s %dx%d, %.3f fps, %d frames, %.3f s": "%s: %s %dx%d, %.3f fps, %d フレーム, %.3f 秒",

		// Extract command
		"Write frames of a time range as image files": "指定範囲のフレームを画像ファイルとして書き出し",
		"Range start in seconds":                      "範囲の開始（秒）",
		"Range end in seconds (0 = end of video)":     "範囲の終了（秒、0 = 動画の最後まで）",
		"Output directory":                            "出力ディレクトリ",
		"Keep every Nth frame":                        "Nフレームごとに1枚を保存",
		"Write JPEG at this quality instead of PNG":   "PNGの代わりにこの品質でJPEGを書き出し",
		"Extracting %s to %s...":                      "%s を %s に抽出中...",
		"Saved %d frames to %s":                       "%d フレームを %s に保存しました",

		// Bench command
		"Measure extraction throughput of each delivery mode": "配信モードごとの抽出スループットを計測",
		"Modes to run (bulk, stream, queue)":                  "実行するモード（bulk, stream, queue）",
		"Write a Markdown summary to this file":               "Markdown形式のサマリーをこのファイルに出力",
		"Running %s mode...":                                  "%s モードを実行中...",
		"%s mode failed: %v":                                  "%s モードが失敗しました: %v",
		"%-8s %6d frames in %8.3f s  %8.1f fps  %.1fx real time": "%-8s %6d フレーム %8.3f 秒  %8.1f fps  実時間の %.1f 倍",
		"Summary saved to %s":         "サマリーを %s に保存しました",
		"Failed to write summary: %s": "サマリーの書き込みに失敗しました: %s",

		// Sheet command
		"Render evenly spaced frames into a contact sheet": "等間隔のフレームをコンタクトシートに描画",
		"Sheet file name without extension":                "シートのファイル名（拡張子なし）",
		"Number of tiles":                                  "タイル数",
		"Number of columns":                                "カラム数",
		"Stream ended early, using %d frames":              "ストリームが早く終了したため %d フレームを使用します",
		"Contact sheet saved to %s":                        "コンタクトシートを %s に保存しました",

		// Runtime messages
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",
		"Error: %v":                     "エラー: %v",

		// Error messages
		"A video argument is required":           "動画引数が必要です",
		"At least one video argument is required": "少なくとも1つの動画引数が必要です",

		// Summary content
		"Benchmark Summary": "ベンチマークサマリー",
		"Video":             "動画",
		"Settings":          "設定",
		"Results":           "実行結果",
		"Item":              "項目",
		"Value":             "値",
		"File":              "ファイル",
		"Codec":             "コーデック",
		"Resolution":        "解像度",
		"Frame Rate":        "フレームレート",
		"Frames":            "フレーム数",
		"Duration":          "再生時間",
		"File Size":         "ファイルサイズ",
		"Engine":            "エンジン",
		"Batch Size":        "バッチサイズ",
		"Internal Batch":    "内部バッチ",
		"Queue Capacity":    "キュー容量",
		"Pool Size":         "プールサイズ",
		"Format":            "フォーマット",
		"Mode":              "モード",
		"Time":              "時間",
		"FPS":               "FPS",
		"ms/frame":          "ms/フレーム",
		"Speed":             "速度",
		"Failed":            "失敗",
		"Generated at":      "生成日時",
	})
}
