package uci

import "testing"

func TestParseInfoTracksDeepestScore(t *testing.T) {
	var res Result
	parseInfo("info depth 8 seldepth 12 multipv 1 score cp 35 nodes 4242 pv e2e4 e7e5", &res)
	if res.Depth != 8 || res.ScoreCP != 35 || res.Mate != 0 {
		t.Fatalf("res = %+v", res)
	}

	parseInfo("info depth 12 score cp -15 pv d2d4", &res)
	if res.Depth != 12 || res.ScoreCP != -15 {
		t.Fatalf("res = %+v", res)
	}

	parseInfo("info depth 14 score mate 3 pv h5f7", &res)
	if res.Depth != 14 || res.Mate != 3 {
		t.Fatalf("res = %+v", res)
	}
}

func TestParseInfoIgnoresNoise(t *testing.T) {
	var res Result
	parseInfo("info string NNUE evaluation enabled", &res)
	if res != (Result{}) {
		t.Fatalf("noise line changed result: %+v", res)
	}
}
