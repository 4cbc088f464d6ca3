package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session
		"Opened %s: %dx%d @ %.2f fps, %d frames (%s)": "%s を開きました: %dx%d @ %.2f fps, %d フレーム (%s)",
		"End of stream after %d frames":               "%d フレームでストリーム終端に達しました",
		"Decode failed at frame %d: %v":               "フレーム %d のデコードに失敗: %v",
		"Seeked to %.3fs (frame %d)":                  "%.3f 秒へシーク (フレーム %d)",

		// Batch extraction
		"Extracting %s in batches of %d (%d frames reported)": "%s を %d フレームずつ抽出中 (報告フレーム数 %d)",
		"Extraction stopped after %d frames: %v":              "%d フレームで抽出が停止しました: %v",
		"Decoder delivered %d of %d reported frames":          "デコーダは %d フレームを出力しました (報告 %d フレーム)",
		"Extracted %d frames in %d calls":                     "%d フレームを %d 回の呼び出しで抽出しました",
		"Delivered %d pooled frames":                          "%d フレームをプールバッファで配信しました",

		// Streaming
		"Streaming from %.3fs to %.3fs":         "%.3f 秒から %.3f 秒までストリーミング",
		"Stream stopped at %s after %d frames":  "%s で停止 (%d フレーム)",
		"Stream stopped after %d frames":        "%d フレームでストリームを停止しました",
		"Stream failed after %d frames: %v":     "%d フレームでストリームが失敗: %v",
		"Producer finished after %d frames":     "プロデューサが %d フレームで完了しました",
		"Producer canceled after %d frames":     "プロデューサが %d フレームで中止されました",
		"Producer failed after %d frames: %v":   "プロデューサが %d フレームで失敗: %v",
		"Producer stopped after %d frames: %v":  "プロデューサが %d フレームで停止: %v",

		// Native decoder
		"Opened %s with %s engine: %s %dx%d, %d samples": "%s を %s エンジンで開きました: %s %dx%d, %d サンプル",
		"Seek to %.3fs resolved to frame %d":             "%.3f 秒へのシークはフレーム %d になりました",
		"Engine ended at frame %d of %d":                 "エンジンが %d / %d フレームで終了しました",

		// Contact sheet
		"Rendering %d frames as %dx%d grid (%dx%d px)": "%d フレームを %dx%d グリッドで描画中 (%dx%d px)",
	})
}
