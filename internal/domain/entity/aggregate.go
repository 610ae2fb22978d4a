package entity

// Aggregate — отображаемый агрегат оценок участницы
type Aggregate struct {
	AverageRating float64 `json:"average_rating"`
	TotalVotes    int     `json:"total_votes"`
}

// Recompute возвращает оптимистичный агрегат после голоса значением newValue.
// Формула намеренно вычитает прежний вклад самого голосующего (0, если его не
// было), а не пересчитывает среднее с нуля: полного набора оценок на клиенте нет.
// Результат одинаков для первого голоса и для переголосования.
func (a Aggregate) Recompute(previous *int, newValue int) Aggregate {
	newCount := a.TotalVotes
	prevValue := 0
	if previous == nil {
		newCount++
	} else {
		prevValue = *previous
	}

	newSum := a.AverageRating*float64(a.TotalVotes) - float64(prevValue) + float64(newValue)
	next := Aggregate{TotalVotes: newCount}
	if newCount > 0 {
		next.AverageRating = newSum / float64(newCount)
	}
	return next
}
