package gemini

import "github.com/handarchive/video-analysis-service/internal/domain/entity"

// Platform prompts. Each asks for the same JSON schema; only the broadcast
// layout hints differ, so parsing never depends on the platform.

const handSchemaInstructions = `Return ONLY a JSON object with this exact structure:
{
  "hands": [
    {
      "handNumber": 1,
      "stakes": "500/1000/1000",
      "pot": 150000,
      "timestamp_start": "03:25",
      "timestamp_end": "08:10",
      "board": {"flop": ["Ah", "7d", "2c"], "turn": "Kd", "river": null},
      "players": [
        {"name": "Player Name", "seat": 3, "position": "BTN", "stackSize": 100000, "holeCards": ["As", "Kh"]}
      ],
      "actions": [
        {"player": "Player Name", "street": "preflop", "action": "raise", "amount": 2500}
      ],
      "winners": [{"name": "Player Name", "amount": 150000, "hand": "pair of aces"}]
    }
  ]
}
Timestamps are relative to the start of this clip in MM:SS. Use null for
cards that are never shown. Do not include any text outside the JSON object.`

const eptPrompt = `You are analyzing a European Poker Tour (EPT) live stream clip.
The EPT overlay shows player names, hole cards, stack sizes, and the pot at the
bottom of the frame. Extract every poker hand that plays out in this clip: all
players involved with positions and stacks, every betting action in order,
the board cards street by street, the final pot, and the winner(s).
` + handSchemaInstructions

const tritonPrompt = `You are analyzing a Triton Poker Series high-stakes clip.
The Triton overlay shows seat numbers, hole cards face-up, and running pot size.
Extract every hand, paying attention to straddles and multi-way pots. Record
all players, positions, stacks, complete action sequences, board cards, final
pot, and winner(s).
` + handSchemaInstructions

const wsopPrompt = `You are analyzing a World Series of Poker (WSOP) broadcast clip.
Extract every poker hand with complete action sequences, player names and
positions from the on-screen graphics, board cards, pot sizes, and winner(s).
` + handSchemaInstructions

func promptFor(platform entity.Platform) string {
	switch platform {
	case entity.PlatformTriton:
		return tritonPrompt
	case entity.PlatformWSOP:
		return wsopPrompt
	default:
		return eptPrompt
	}
}
