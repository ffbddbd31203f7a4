package i18n

var ptBRMessages = map[Code]string{
	CodeUnknown:             "Algo deu errado",
	CodeValidation:          "{{if .Field}}Campo inválido: {{.Field}}{{if .Reason}} ({{.Reason}}){{end}}{{else}}Requisição inválida{{end}}",
	CodeNotFound:            "{{if .Kind}}{{.Kind}} não encontrado{{else}}Não encontrado{{end}}",
	CodeStoreRead:           "Falha ao ler a planilha de presença",
	CodeStoreWrite:          "Falha ao registrar presença",
	CodeRecurrenceExpansion: "Sessão criada, mas as ocorrências recorrentes não foram salvas",
}
