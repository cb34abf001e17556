package deepgram

type deepgramVoice string

const (
	VoiceAsteriaEn deepgramVoice = "aura-asteria-en"
	VoiceLunaEn    deepgramVoice = "aura-luna-en"
	VoiceStellaEn  deepgramVoice = "aura-stella-en"
	VoiceAthenaEn  deepgramVoice = "aura-athena-en"
	VoiceHeraEn    deepgramVoice = "aura-hera-en"
	VoiceOrionEn   deepgramVoice = "aura-orion-en"
	VoiceArcasEn   deepgramVoice = "aura-arcas-en"
	VoicePerseusEn deepgramVoice = "aura-perseus-en"
	VoiceAngusEn   deepgramVoice = "aura-angus-en"
	VoiceOrpheusEn deepgramVoice = "aura-orpheus-en"
	VoiceHeliosEn  deepgramVoice = "aura-helios-en"
	VoiceZeusEn    deepgramVoice = "aura-zeus-en"

	Voice2ThaliaEn  deepgramVoice = "aura-2-thalia-en"
	Voice2ApolloEn  deepgramVoice = "aura-2-apollo-en"
	Voice2OrionEn   deepgramVoice = "aura-2-orion-en"
	Voice2ZeusEn    deepgramVoice = "aura-2-zeus-en"
	Voice2CelesteEs deepgramVoice = "aura-2-celeste-es"
	Voice2NestorEs  deepgramVoice = "aura-2-nestor-es"
)

const defaultVoice = Voice2ZeusEn

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceAsteriaEn, VoiceLunaEn, VoiceStellaEn, VoiceAthenaEn, VoiceHeraEn,
		VoiceOrionEn, VoiceArcasEn, VoicePerseusEn, VoiceAngusEn, VoiceOrpheusEn,
		VoiceHeliosEn, VoiceZeusEn,
		Voice2ThaliaEn, Voice2ApolloEn, Voice2OrionEn, Voice2ZeusEn,
		Voice2CelesteEs, Voice2NestorEs,
	}
}

// ParseVoice accepts any of the voice names from [GetAvailableVoices].
func ParseVoice(name string) (deepgramVoice, bool) {
	for _, voice := range GetAvailableVoices() {
		if string(voice) == name {
			return voice, true
		}
	}
	return "", false
}
