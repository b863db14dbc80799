package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"nrow/internal/config"
	"nrow/internal/game"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	regime := flag.String("regime", game.RegimeClassic, "classic (3x3) or extended (5x5, four in a row)")
	mark := flag.String("mark", "X", "your mark; X moves first")
	verbose := flag.Bool("v", false, "log engine decisions")
	flag.Parse()

	cfg := config.Load()
	cfg.LogPretty = true
	cfg.LogLevel = zerolog.WarnLevel
	if *verbose {
		cfg.LogLevel = zerolog.DebugLevel
	}
	config.SetupLogging(cfg)

	human, err := game.ParseMark(*mark)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -mark")
	}
	m := game.NewManager(time.Hour, nil)
	g, err := m.StartGame("you", *regime, human)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot start game")
	}
	if err := play(m, g, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("play")
	}
}

// play alternates human input and engine replies until the input ends or
// the human quits.
func play(m *game.Manager, g game.GameState, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	size := boardSize(g.Board)
	for {
		printBoard(out, g.Board, size)
		if g.Status == game.StatusFinished {
			fmt.Fprintln(out, outcomeText(g))
			fmt.Fprint(out, "r to play again, q to quit\n> ")
			line, err := reader.ReadString('\n')
			if cmd := strings.TrimSpace(line); cmd == "r" {
				if g, err = m.Restart(g.ID); err != nil {
					return err
				}
				continue
			}
			if err != nil && err != io.EOF {
				return err
			}
			return nil
		}

		if g.Turn == g.Bot {
			res, next, err := m.PlayBotTurn(g.ID)
			if err != nil {
				return err
			}
			r, c := res.Index/size, res.Index%size
			fmt.Fprintf(out, "engine plays %d %d (%s)\n", r+1, c+1, res.Decision.Policy)
			g = next
			continue
		}

		fmt.Fprintf(out, "%s to move: row col (1-%d), r restarts, q quits\n> ", g.Turn, size)
		line, err := reader.ReadString('\n')
		fields := strings.Fields(line)
		switch {
		case len(fields) == 1 && fields[0] == "q":
			return nil
		case len(fields) == 1 && fields[0] == "r":
			if g, err = m.Restart(g.ID); err != nil {
				return err
			}
			continue
		case len(fields) == 2:
			r, errR := strconv.Atoi(fields[0])
			c, errC := strconv.Atoi(fields[1])
			if errR != nil || errC != nil || r < 1 || r > size || c < 1 || c > size {
				fmt.Fprintln(out, "coordinates out of range")
				continue
			}
			_, next, moveErr := m.HandleMove(game.Move{Username: g.Username, GameID: g.ID, Index: (r-1)*size + c - 1})
			if moveErr != nil {
				fmt.Fprintln(out, "invalid move:", moveErr)
				continue
			}
			g = next
			continue
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, "could not read that")
	}
}

func boardSize(b game.Board) int {
	size := 1
	for size*size < len(b) {
		size++
	}
	return size
}

func printBoard(out io.Writer, b game.Board, size int) {
	var sb strings.Builder
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			cell := b[r*size+c].String()
			if cell == "" {
				cell = "."
			}
			sb.WriteString(cell)
			if c < size-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprint(out, sb.String())
}

func outcomeText(g game.GameState) string {
	switch {
	case g.Verdict.Outcome == game.Draw:
		return "Draw!"
	case g.Winner == game.BotName:
		return g.Verdict.Winner.String() + " (engine) wins!"
	}
	return g.Verdict.Winner.String() + " (you) win!"
}
